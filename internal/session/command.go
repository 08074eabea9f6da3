package session

import (
	"bytes"

	"echo-core/internal/constants"
)

// Interpreter 管理命令识别器
// 只对单次读取做逐字节精确匹配，被拆成两次读取的命令按普通数据回显
type Interpreter struct {
	command []byte
}

// NewInterpreter 创建识别 "shutdown\r\n" 的识别器
func NewInterpreter() *Interpreter {
	return &Interpreter{command: []byte(constants.ShutdownCommand)}
}

// Interpret 判断一次读取的数据是否为关闭命令
func (i *Interpreter) Interpret(data []byte) bool {
	return bytes.Equal(data, i.command)
}
