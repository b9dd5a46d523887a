package task

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	xerrors "PasskeyWallet/internal/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Query 描述从指令日志中筛选指令的条件。零值返回最近更新的 20 条指令。
type Query struct {
	Statuses  []Status
	Intent    string // check_balance、transfer 或 unrecognized
	Recipient string // 解析后的收款地址，大小写不敏感
	ErrorCode string
	Sent      *bool // 是否已产生交易摘要
	Since     int64 // created_at 下界（秒，含）
	Text      string
	Oldest    bool // 按更新时间正序
	Limit     int
	Offset    int
}

var knownIntents = map[string]struct{}{
	"check_balance": {},
	"transfer":      {},
	"unrecognized":  {},
}

// ParseQuery 读取 HTTP 查询参数：status（逗号分隔）、intent、recipient、
// error_code、sent、since（Unix 秒或 RFC3339）、q、order、limit、offset。
func ParseQuery(values url.Values) (Query, error) {
	q := Query{
		Intent:    strings.ToLower(strings.TrimSpace(values.Get("intent"))),
		Recipient: values.Get("recipient"),
		ErrorCode: strings.ToUpper(strings.TrimSpace(values.Get("error_code"))),
		Text:      values.Get("q"),
	}
	if raw := values.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := Status(strings.ToLower(strings.TrimSpace(part)))
			if !IsValidStatus(status) {
				return Query{}, invalidQuery("status", part)
			}
			q.Statuses = append(q.Statuses, status)
		}
	}
	if q.Intent != "" {
		if _, ok := knownIntents[q.Intent]; !ok {
			return Query{}, invalidQuery("intent", q.Intent)
		}
	}
	if raw := values.Get("sent"); raw != "" {
		sent, err := strconv.ParseBool(raw)
		if err != nil {
			return Query{}, invalidQuery("sent", raw)
		}
		q.Sent = &sent
	}
	if raw := values.Get("since"); raw != "" {
		since, err := parseSince(raw)
		if err != nil {
			return Query{}, invalidQuery("since", raw)
		}
		q.Since = since
	}
	switch strings.ToLower(values.Get("order")) {
	case "", "desc", "newest":
	case "asc", "oldest":
		q.Oldest = true
	default:
		return Query{}, invalidQuery("order", values.Get("order"))
	}
	for key, dst := range map[string]*int{"limit": &q.Limit, "offset": &q.Offset} {
		raw := values.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Query{}, invalidQuery(key, raw)
		}
		*dst = n
	}
	q.normalize()
	return q, nil
}

func parseSince(raw string) (int64, error) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return 0, err
	}
	return ts.Unix(), nil
}

func invalidQuery(field, value string) error {
	return xerrors.New(CodeTaskValidation, "invalid "+field+" filter "+strconv.Quote(value))
}

func (q *Query) normalize() {
	if q.Limit <= 0 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	q.Recipient = strings.ToLower(strings.TrimSpace(q.Recipient))
	q.Text = strings.TrimSpace(q.Text)
	if len(q.Statuses) > 0 {
		seen := make(map[Status]struct{}, len(q.Statuses))
		statuses := q.Statuses[:0]
		for _, s := range q.Statuses {
			if _, dup := seen[s]; dup || !IsValidStatus(s) {
				continue
			}
			seen[s] = struct{}{}
			statuses = append(statuses, s)
		}
		q.Statuses = statuses
	}
}

// Matches 判断指令是否满足查询条件，分页除外。
func (q Query) Matches(t *Task) bool {
	if len(q.Statuses) > 0 {
		found := false
		for _, s := range q.Statuses {
			if t.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Intent != "" && t.Outcome.Intent != q.Intent {
		return false
	}
	if q.Recipient != "" && strings.ToLower(t.Outcome.Recipient) != q.Recipient {
		return false
	}
	if q.ErrorCode != "" && t.ErrorCode != q.ErrorCode {
		return false
	}
	if q.Sent != nil && (t.Outcome.TxDigest != "") != *q.Sent {
		return false
	}
	if q.Since > 0 && t.CreatedAt < q.Since {
		return false
	}
	if q.Text != "" {
		needle := strings.ToLower(q.Text)
		return strings.Contains(strings.ToLower(t.Text), needle) ||
			strings.Contains(strings.ToLower(t.Outcome.Recipient), needle) ||
			strings.Contains(strings.ToLower(t.Outcome.TxDigest), needle)
	}
	return true
}

// where 生成 SQL 过滤条件，占位符使用 "?"。
func (q Query) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if len(q.Statuses) > 0 {
		marks := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		clauses = append(clauses, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if q.Intent != "" {
		clauses = append(clauses, "intent = ?")
		args = append(args, q.Intent)
	}
	if q.Recipient != "" {
		clauses = append(clauses, "LOWER(recipient) = ?")
		args = append(args, q.Recipient)
	}
	if q.ErrorCode != "" {
		clauses = append(clauses, "error_code = ?")
		args = append(args, q.ErrorCode)
	}
	if q.Sent != nil {
		if *q.Sent {
			clauses = append(clauses, "tx_digest <> ''")
		} else {
			clauses = append(clauses, "tx_digest = ''")
		}
	}
	if q.Since > 0 {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, q.Since)
	}
	if q.Text != "" {
		pattern := "%" + strings.ToLower(q.Text) + "%"
		clauses = append(clauses, "(LOWER(text) LIKE ? OR LOWER(recipient) LIKE ? OR LOWER(tx_digest) LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
