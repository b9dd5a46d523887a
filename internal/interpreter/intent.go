package interpreter

import "fmt"

// Intent 是一次指令解析的结果，只能是 CheckBalance、Transfer 或 Unrecognized。
type Intent interface {
	Kind() string
	fmt.Stringer
	sealed()
}

// CheckBalance 表示查询余额。
type CheckBalance struct{}

// Transfer 表示转账。Recipient 保留原始写法，解析留给交易编排。
type Transfer struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// Unrecognized 表示没有任何策略识别该文本。
type Unrecognized struct {
	Text string `json:"text"`
}

// Intent kinds.
const (
	KindCheckBalance = "check_balance"
	KindTransfer     = "transfer"
	KindUnrecognized = "unrecognized"
)

func (CheckBalance) Kind() string { return KindCheckBalance }
func (Transfer) Kind() string     { return KindTransfer }
func (Unrecognized) Kind() string { return KindUnrecognized }

func (CheckBalance) String() string { return "check balance" }
func (t Transfer) String() string {
	return fmt.Sprintf("send %s sui to %s", t.Amount, t.Recipient)
}
func (u Unrecognized) String() string { return u.Text }

func (CheckBalance) sealed() {}
func (Transfer) sealed()     {}
func (Unrecognized) sealed() {}
