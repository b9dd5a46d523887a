package task

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"fmt"
	"time"

	xerrors "PasskeyWallet/internal/errors"
	"PasskeyWallet/internal/storage/database"
)

const commandColumns = `id, text, status, intent, strategy, recipient, amount, balance, tx_digest, explorer, message, error_code, attempts, created_at, updated_at`

// SQLStore 将指令日志保存在 MySQL、PostgreSQL 或 SQLite 中。
type SQLStore struct {
	db  *database.DB
	now func() time.Time
}

// NewSQLStore 基于已迁移的数据库连接创建 SQLStore。
func NewSQLStore(db *database.DB) (*SQLStore, error) {
	if db == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "数据库连接未初始化")
	}
	return &SQLStore{db: db, now: time.Now}, nil
}

// Create 实现 Store 接口。
func (s *SQLStore) Create(ctx context.Context, task *Task) error {
	if task == nil || task.ID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "指令 ID 不能为空")
	}
	now := s.now().Unix()
	if task.CreatedAt == 0 {
		task.CreatedAt = now
	}
	if task.Status == "" {
		task.Status = StatusPending
	}
	task.UpdatedAt = now

	o := task.Outcome
	_, err := s.db.ExecContext(ctx, `INSERT INTO commands (`+commandColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Text, string(task.Status), o.Intent, o.Strategy, o.Recipient, o.Amount, o.Balance,
		o.TxDigest, o.Explorer, o.Message, task.ErrorCode, task.Attempts, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrTaskConflict
		}
		return fmt.Errorf("写入指令失败: %w", err)
	}
	return nil
}

// Get 返回指令。
func (s *SQLStore) Get(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+commandColumns+` FROM commands WHERE id = ?`, id)
	task, err := scanTask(row)
	if stdErrors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取指令失败: %w", err)
	}
	return task, nil
}

// Claim 仅当指令仍处于 pending 时将其更新为 running。
func (s *SQLStore) Claim(ctx context.Context, id string) (*Task, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE commands SET status = ?, attempts = attempts + 1, updated_at = ? WHERE id = ? AND status = ?`,
		string(StatusRunning), s.now().Unix(), id, string(StatusPending))
	if err != nil {
		return nil, fmt.Errorf("领取指令失败: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("领取指令失败: %w", err)
	}
	task, getErr := s.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if affected == 1 {
		return task, nil
	}
	if task.Finished() {
		return task, ErrTaskCompleted
	}
	return task, ErrTaskConflict
}

// MarkSucceeded 记录成功结果。
func (s *SQLStore) MarkSucceeded(ctx context.Context, id string, outcome Outcome) error {
	return s.finish(ctx, id, StatusSucceeded, "", outcome)
}

// MarkFailed 记录失败结果。
func (s *SQLStore) MarkFailed(ctx context.Context, id string, code xerrors.Code, outcome Outcome) error {
	return s.finish(ctx, id, StatusFailed, code, outcome)
}

func (s *SQLStore) finish(ctx context.Context, id string, status Status, code xerrors.Code, o Outcome) error {
	res, err := s.db.ExecContext(ctx, `UPDATE commands SET status = ?, intent = ?, strategy = ?, recipient = ?, amount = ?, balance = ?,
        tx_digest = ?, explorer = ?, message = ?, error_code = ?, updated_at = ?
        WHERE id = ? AND status IN (?, ?)`,
		string(status), o.Intent, o.Strategy, o.Recipient, o.Amount, o.Balance,
		o.TxDigest, o.Explorer, o.Message, string(code), s.now().Unix(),
		id, string(StatusPending), string(StatusRunning))
	if err != nil {
		return fmt.Errorf("更新指令状态失败: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新指令状态失败: %w", err)
	}
	if affected == 1 {
		return nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return ErrTaskCompleted
}

// List 按条件返回指令。
func (s *SQLStore) List(ctx context.Context, q Query) ([]*Task, error) {
	q.normalize()
	where, args := q.where()
	order := "DESC"
	if q.Oldest {
		order = "ASC"
	}
	query := `SELECT ` + commandColumns + ` FROM commands` + where +
		` ORDER BY updated_at ` + order + `, id ` + order + ` LIMIT ? OFFSET ?`
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询指令列表失败: %w", err)
	}
	defer rows.Close()

	tasks := make([]*Task, 0, q.Limit)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("解析指令失败: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历指令失败: %w", err)
	}
	return tasks, nil
}

// Stats 汇总各状态的指令数量。
func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*), MIN(created_at), MAX(created_at) FROM commands GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("统计指令失败: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status         string
			count          int
			oldest, newest int64
		)
		if err := rows.Scan(&status, &count, &oldest, &newest); err != nil {
			return stats, fmt.Errorf("解析统计结果失败: %w", err)
		}
		stats.add(Status(status), count)
		if stats.OldestAt == 0 || oldest < stats.OldestAt {
			stats.OldestAt = oldest
		}
		if newest > stats.NewestAt {
			stats.NewestAt = newest
		}
	}
	return stats, rows.Err()
}

// Close 关闭数据库连接。
func (s *SQLStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var (
		task   Task
		status string
	)
	o := &task.Outcome
	if err := row.Scan(&task.ID, &task.Text, &status, &o.Intent, &o.Strategy, &o.Recipient, &o.Amount, &o.Balance,
		&o.TxDigest, &o.Explorer, &o.Message, &task.ErrorCode, &task.Attempts, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, err
	}
	task.Status = Status(status)
	return &task, nil
}
