package appfs

import (
	"io/fs"
	"testing"
)

func TestFS(t *testing.T) {
	for _, name := range []string{
		"assets/templates/email/_base.gohtml",
		"assets/templates/email/_base.txt",
		"assets/templates/email/notification.txt",
		"assets/templates/email/password_reset.gohtml",
		"assets/common-passwords.txt",
		"its/pools.yaml",
		"migrations/00001_users_mozes.sql",
	} {
		if _, err := fs.Stat(FS, name); err != nil {
			t.Errorf("fs.Stat(%q) error = %v", name, err)
		}
	}
}
