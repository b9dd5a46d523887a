package migrations

import "embed"

// Files 暴露按方言分目录存放的 SQL 迁移文件。
//
//go:embed mysql/*.sql postgres/*.sql sqlite/*.sql
var Files embed.FS
