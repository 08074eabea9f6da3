// Package idgen 生成连接等对象的唯一 ID
package idgen

import (
	"github.com/google/uuid"
)

// Generator ID 生成器
type Generator interface {
	Generate() string
}

// UUIDGenerator 基于 UUID v7 的 ID 生成器，时间有序，无需跟踪已分配的 ID
type UUIDGenerator struct {
	prefix string
}

// NewUUIDGenerator 创建 UUID 生成器
func NewUUIDGenerator(prefix string) *UUIDGenerator {
	return &UUIDGenerator{prefix: prefix}
}

// Generate 生成唯一 ID
func (g *UUIDGenerator) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		// 回退到 UUID v4
		id = uuid.New()
	}
	return g.prefix + id.String()
}

var _ Generator = (*UUIDGenerator)(nil)
