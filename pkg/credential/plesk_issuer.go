package credential

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// PleskIssuer 通过本机 `plesk bin secret_key -c` 签发 API 密钥
type PleskIssuer struct {
	Binary    string
	Hostname  string
	IPAddress string
	Now       func() time.Time
}

func (p PleskIssuer) Issue(ctx context.Context) (string, error) {
	bin := p.Binary
	if bin == "" {
		bin = "plesk"
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	desc := fmt.Sprintf("Admin access token for %s at %s", p.Hostname, now().Format(time.RFC3339))
	cmd := exec.CommandContext(ctx, bin, "bin", "secret_key", "-c", "-ip-address", p.IPAddress, "-description", desc)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s bin secret_key: %w: %s", bin, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return string(bytes.TrimSpace(stdout.Bytes())), nil
}
