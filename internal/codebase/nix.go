package codebase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/iamvkosarev/amc-discord/internal/model"
)

const (
	prefetchTimeout = 5 * time.Minute
	toSRITimeout    = 10 * time.Second
)

// CommandRunner runs an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) (string, error)

func execRunner(ctx context.Context, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

type NixHasher struct {
	run CommandRunner
}

func NewNixHasher(run CommandRunner) *NixHasher {
	if run == nil {
		run = execRunner
	}
	return &NixHasher{run: run}
}

// HashURL prefetches url into the nix store and reports its hash in SRI
// form, falling back to the base32 hash when the conversion fails.
func (n *NixHasher) HashURL(ctx context.Context, url string, unpack bool) (model.NixHash, error) {
	if strings.TrimSpace(url) == "" {
		return model.NixHash{}, errors.New("url is empty")
	}
	args := []string{"--type", "sha256"}
	if unpack {
		args = append(args, "--unpack")
	}
	args = append(args, url)

	prefetchCtx, cancel := context.WithTimeout(ctx, prefetchTimeout)
	defer cancel()
	narHash, err := n.run(prefetchCtx, "nix-prefetch-url", args...)
	if err != nil {
		if errors.Is(prefetchCtx.Err(), context.DeadlineExceeded) {
			return model.NixHash{}, errors.New("download timed out (exceeded 5 minutes)")
		}
		if errors.Is(err, exec.ErrNotFound) {
			return model.NixHash{}, errors.New("nix-prefetch-url not found, ensure Nix is installed and in PATH")
		}
		return model.NixHash{}, fmt.Errorf("nix-prefetch-url failed: %w", err)
	}

	sriCtx, cancelSRI := context.WithTimeout(ctx, toSRITimeout)
	defer cancelSRI()
	sri, err := n.run(sriCtx, "nix", "hash", "to-sri", "--type", "sha256", narHash)
	if err != nil || sri == "" {
		return model.NixHash{
			Hash:   narHash,
			Format: "base32",
			URL:    url,
			Note:   "Use this hash directly in Nix expressions",
		}, nil
	}
	return model.NixHash{
		Hash:   sri,
		Format: "sri",
		URL:    url,
		Note:   "Use this hash in the 'hash' attribute of fetchzip/fetchurl",
	}, nil
}
