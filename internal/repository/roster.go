package repository

import "github.com/hitoshi/soiree/internal/filestore"

// FileRoster はpresents.txt（なければpresent.txt）から名簿を読む。
// ファイルは運営者が手で編集するため、呼び出しごとに読み直す。
type FileRoster struct {
	paths []string
}

// NewFileRoster は候補パスを優先順に指定してFileRosterを生成する。
func NewFileRoster(paths ...string) *FileRoster {
	return &FileRoster{paths: paths}
}

// Names は名簿の名前一覧を返す。読めない場合は空スライスを返す。
func (r *FileRoster) Names() []string {
	return filestore.ReadRoster(r.paths...)
}

var (
	_ RosterSource = (*FileRoster)(nil)
	_ TokenStore   = (*filestore.TokenFile)(nil)
)
