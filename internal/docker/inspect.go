package docker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Helpers over the plain docker CLI used by the status, versions,
// load-dashboards and upload-sourcemap commands.

// ContainerIDs returns the ids of running containers whose name matches
// the given filter.
func ContainerIDs(ctx context.Context, nameFilter string) ([]string, error) {
	out, err := exec.CommandContext(ctx, "docker", "ps", "--filter", "name="+nameFilter, "-q").Output()
	if err != nil {
		return nil, fmt.Errorf("docker ps failed: %w", err)
	}
	return splitLines(string(out)), nil
}

// Inspect runs docker inspect with the given go-template format and
// returns the non-empty output lines.
func Inspect(ctx context.Context, format string, ids ...string) ([]string, error) {
	args := append([]string{"inspect", "-f", format}, ids...)
	out, err := exec.CommandContext(ctx, "docker", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("docker inspect failed: %w", err)
	}
	return splitLines(string(out)), nil
}

// Port lists the published port bindings of a container, one line per
// binding in docker's "8200/tcp -> 0.0.0.0:8200" format.
func Port(ctx context.Context, containerID string) ([]string, error) {
	out, err := exec.CommandContext(ctx, "docker", "port", containerID).Output()
	if err != nil {
		return nil, fmt.Errorf("docker port failed: %w", err)
	}
	return splitLines(string(out)), nil
}

// Exec runs a shell command inside a running container and returns its
// trimmed output.
func Exec(ctx context.Context, containerID, command string) (string, error) {
	out, err := exec.CommandContext(ctx, "docker", "exec", containerID, "sh", "-c", command).Output()
	if err != nil {
		return "", fmt.Errorf("docker exec failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// LoadImage loads an image archive into the local docker daemon.
func LoadImage(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, "docker", "load", "-i", path)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker load %s failed: %w", path, err)
	}
	return nil
}

func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
