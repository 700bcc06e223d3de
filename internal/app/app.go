package app

// App 持有构建期元信息。
type App struct {
	Version string
	Commit  string
	Date    string
}

func New(version, commit, date string) App {
	return App{Version: version, Commit: commit, Date: date}
}

func (a App) VersionInfo() map[string]string {
	return map[string]string{
		"version": a.Version,
		"commit":  a.Commit,
		"date":    a.Date,
	}
}
