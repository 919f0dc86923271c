package docker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Compose drives the external docker-compose executable. With an empty
// File it operates on whatever docker-compose finds in the working
// directory, which is what the status/stop/run subcommands want.
type Compose struct {
	File string
}

func (c Compose) command(ctx context.Context, args ...string) *exec.Cmd {
	var full []string
	if c.File != "" {
		full = append(full, "-f", c.File)
	}
	full = append(full, args...)
	cmd := exec.CommandContext(ctx, "docker-compose", full...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

// Build builds the given services, always pulling newer base images.
func (c Compose) Build(ctx context.Context, services []string, noCache, parallel bool) error {
	args := []string{"build", "--pull"}
	if noCache {
		args = append(args, "--no-cache")
	}
	if parallel {
		args = append(args, "--parallel")
	}
	if err := c.command(ctx, append(args, services...)...).Run(); err != nil {
		return fmt.Errorf("docker-compose build failed: %w", err)
	}
	return nil
}

func (c Compose) Pull(ctx context.Context, services []string) error {
	if err := c.command(ctx, append([]string{"pull"}, services...)...).Run(); err != nil {
		return fmt.Errorf("docker-compose pull failed: %w", err)
	}
	return nil
}

func (c Compose) Up(ctx context.Context) error {
	if err := c.command(ctx, "up", "-d").Run(); err != nil {
		return fmt.Errorf("docker-compose up failed: %w", err)
	}
	return nil
}

func (c Compose) Stop(ctx context.Context) error {
	if err := c.command(ctx, "stop").Run(); err != nil {
		return fmt.Errorf("docker-compose stop failed: %w", err)
	}
	return nil
}

func (c Compose) PS(ctx context.Context) error {
	if err := c.command(ctx, "ps").Run(); err != nil {
		return fmt.Errorf("docker-compose ps failed: %w", err)
	}
	return nil
}

// Run runs a one-off command in a service container and removes it.
func (c Compose) Run(ctx context.Context, service string, args ...string) error {
	full := append([]string{"run", "--rm", service}, args...)
	if err := c.command(ctx, full...).Run(); err != nil {
		return fmt.Errorf("docker-compose run %s failed: %w", service, err)
	}
	return nil
}

// ContainerID resolves a service name to its running container id.
func (c Compose) ContainerID(ctx context.Context, service string) (string, error) {
	var args []string
	if c.File != "" {
		args = append(args, "-f", c.File)
	}
	args = append(args, "ps", "-q", service)
	out, err := exec.CommandContext(ctx, "docker-compose", args...).Output()
	if err != nil {
		return "", fmt.Errorf("failed to resolve container for %s: %w", service, err)
	}
	return strings.TrimSpace(string(out)), nil
}
