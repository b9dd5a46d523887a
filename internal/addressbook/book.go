package addressbook

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"PasskeyWallet/internal/sui"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"
)

// Resolver 将别名解析为链上地址。
type Resolver interface {
	Resolve(input string) string
}

// Entry 描述地址簿中的一条记录。
type Entry struct {
	Alias   string `yaml:"alias" json:"alias"`
	Address string `yaml:"address" json:"address"`
}

// file 对应地址簿文件结构，JSON 文件同样可以直接解析。
type file struct {
	Aliases map[string]string `yaml:"aliases"`
}

// Book 是内存地址簿，别名大小写不敏感。
type Book struct {
	mu      sync.RWMutex
	entries map[string]string
}

// New 使用给定映射创建地址簿。映射中的地址不做校验，由调用方在使用时检查。
func New(entries map[string]string) *Book {
	b := &Book{entries: make(map[string]string, len(entries))}
	for alias, addr := range entries {
		key := normalizeAlias(alias)
		if key == "" {
			continue
		}
		b.entries[key] = strings.TrimSpace(addr)
	}
	return b
}

// Load 从 YAML 文件加载地址簿。
func Load(path string) (*Book, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("地址簿文件路径不能为空")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("解析地址簿路径失败: %w", err)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("读取地址簿文件失败: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(content, &f); err != nil {
		return nil, fmt.Errorf("解析地址簿文件失败: %w", err)
	}
	return New(f.Aliases), nil
}

// Resolve 返回别名对应的地址；未命中时原样返回输入。
func (b *Book) Resolve(input string) string {
	if addr, ok := b.Lookup(input); ok {
		return addr
	}
	return input
}

// Lookup 查询别名。
func (b *Book) Lookup(alias string) (string, bool) {
	if b == nil {
		return "", false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	addr, ok := b.entries[normalizeAlias(alias)]
	return addr, ok
}

// Add 新增或覆盖一条别名，地址必须符合规范格式。
func (b *Book) Add(alias, address string) error {
	key := normalizeAlias(alias)
	if key == "" {
		return fmt.Errorf("别名不能为空")
	}
	if sui.IsAddress(key) {
		return fmt.Errorf("别名 %q 不能是地址格式", alias)
	}
	normalized, err := sui.NormalizeAddress(address)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[key] = normalized
	return nil
}

// Entries 返回按别名排序的全部记录。
func (b *Book) Entries() []Entry {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Entry, 0, len(b.entries))
	for alias, addr := range b.entries {
		out = append(out, Entry{Alias: alias, Address: addr})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}

// Suggest 对未知别名做模糊匹配，返回最接近的已知别名。
func (b *Book) Suggest(input string) (string, bool) {
	entries := b.Entries()
	if len(entries) == 0 {
		return "", false
	}
	matches := fuzzy.FindFrom(normalizeAlias(input), aliasSource(entries))
	if len(matches) == 0 {
		return "", false
	}
	return entries[matches[0].Index].Alias, true
}

// aliasSource 实现 fuzzy.Source。
type aliasSource []Entry

func (s aliasSource) String(i int) string { return s[i].Alias }
func (s aliasSource) Len() int            { return len(s) }

func normalizeAlias(alias string) string {
	return strings.ToLower(strings.TrimSpace(alias))
}

var _ Resolver = (*Book)(nil)
