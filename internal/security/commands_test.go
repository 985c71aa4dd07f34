package security

import "testing"

func TestMatchAllowedCommand(t *testing.T) {
	allowed := []string{
		"npm test",
		"npm run build",
		"go test ./...",
		"go vet ./...",
		"pytest",
		"cargo test",
		"make test",
		"git commit -am release notes",
	}
	for _, c := range allowed {
		if !MatchAllowedCommand(c) {
			t.Errorf("expected %q to be allowed", c)
		}
	}

	disallowed := []string{
		"rm -rf /",
		"curl http://evil",
		"go test ./... && rm -rf /",
		"npm test; rm -rf /",
		"sh -c 'echo hi'",
	}
	for _, c := range disallowed {
		if MatchAllowedCommand(c) {
			t.Errorf("expected %q to be disallowed", c)
		}
	}
}
