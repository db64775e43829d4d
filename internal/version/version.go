package version

import "fmt"

// Заполняются через -ldflags "-X github.com/vladislavdragonenkov/minishop/internal/version.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info returns version information populated via -ldflags.
func Info() (v, c, d string) { return version, commit, date }

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// GetCommit возвращает хеш коммита.
func GetCommit() string { return commit }

// GetDate возвращает дату сборки.
func GetDate() string { return date }

// String форматирует сведения о сборке для `minishop version` и логов старта.
func String() string {
	return fmt.Sprintf("minishop version=%s commit=%s date=%s", version, commit, date)
}
