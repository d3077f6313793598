package hostsfile

import (
	"io/fs"
	"strings"
	"syscall"
	"testing"
)

func TestClassifyWriteError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want WriteKind
	}{
		{"read-only filesystem", &fs.PathError{Op: "open", Path: "/etc/hosts", Err: syscall.EROFS}, WriteKindReadOnly},
		{"permission denied", &fs.PathError{Op: "open", Path: "/etc/hosts", Err: fs.ErrPermission}, WriteKindPrivilege},
		{"anything else", &fs.PathError{Op: "open", Path: "/etc/hosts", Err: syscall.ENOSPC}, WriteKindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			werr := classifyWriteError("/etc/hosts", tt.err)
			if werr.Kind != tt.want {
				t.Fatalf("Kind = %q, want %q", werr.Kind, tt.want)
			}
		})
	}
}

func TestWriteError_RemediationNamesPath(t *testing.T) {
	for _, kind := range []WriteKind{WriteKindReadOnly, WriteKindPrivilege, WriteKindOther} {
		werr := &WriteError{Path: `C:\Windows\System32\drivers\etc\hosts`, Kind: kind, Err: syscall.EACCES}
		if msg := werr.Remediation(); !strings.Contains(msg, werr.Path) {
			t.Errorf("%s remediation should name the exact path: %q", kind, msg)
		}
	}
}
