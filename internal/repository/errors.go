package repository

import "errors"

// 通用的存储库错误
var (
	// ErrDuplicateEntry 表示尝试插入或更新的数据违反了唯一约束，例如重复投递的 stroke 任务
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
)
