package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrLockBusy 同一用户的排程正在被其他请求重排
var ErrLockBusy = errors.New("计划正在更新中，请稍后重试")
