package config

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// PromptPassword 在终端中无回显地读取密码。
func PromptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("标准输入不是终端，请设置 WALLET_CREDENTIAL_PASSWORD")
	}
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(fd)
	if err != nil {
		return "", fmt.Errorf("读取密码失败: %w", err)
	}
	if len(raw) == 0 {
		return "", errors.New("密码不能为空")
	}
	password := string(raw)
	clear(raw)
	return password, nil
}
