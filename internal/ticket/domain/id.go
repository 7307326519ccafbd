package domain

import (
	"github.com/google/uuid"
)

// IDGenerator 生成工单 ID。
// 约定：进程生命周期内返回值两两不同；同一毫秒内生成的值按生成顺序递增。
type IDGenerator interface {
	NewID() (string, error)
}

// UUIDv7 时间前缀 + 随机尾部，库内部对同一毫秒内的序号做了单调处理
type UUIDv7 struct{}

func (UUIDv7) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// IDFunc 方便测试里注入固定 ID
type IDFunc func() (string, error)

func (f IDFunc) NewID() (string, error) { return f() }
