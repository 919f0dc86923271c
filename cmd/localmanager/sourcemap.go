package localmanager

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/elastic/apm-integration-testing/internal/docker"
	"github.com/elastic/apm-integration-testing/internal/sourcemap"
)

var sourcemapCmd = &cobra.Command{
	Use:   "upload-sourcemap",
	Short: "Upload a RUM sourcemap to APM Server",
	Long: "Uploads a javascript sourcemap to APM Server. Defaults are " +
		"derived from the running opbeans-node container when flags are omitted.",
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runUploadSourcemap(cmd.Context(), cmd); err != nil {
			fmt.Printf("Sourcemap upload failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(sourcemapCmd)
	flags := sourcemapCmd.Flags()
	flags.String("sourcemap-file", "", "path to the sourcemap to upload, defaults to the file built with 'make build-opbeans'")
	flags.String("server-url", "", "URL of the APM Server")
	flags.String("service-name", "opbeans-react", "service name of the sourcemap")
	flags.String("service-version", "", "service version of the sourcemap")
	flags.String("bundle-path", "", "bundle path of the sourcemap")
	flags.String("secret-token", "", "secret token configured in the APM Server")
}

func runUploadSourcemap(ctx context.Context, cmd *cobra.Command) error {
	flags := cmd.Flags()
	upload := sourcemap.Upload{}
	var err error
	if upload.ServerURL, err = flags.GetString("server-url"); err != nil {
		return err
	}
	if upload.ServiceName, err = flags.GetString("service-name"); err != nil {
		return err
	}
	if upload.ServiceVersion, err = flags.GetString("service-version"); err != nil {
		return err
	}
	if upload.BundlePath, err = flags.GetString("bundle-path"); err != nil {
		return err
	}
	if upload.File, err = flags.GetString("sourcemap-file"); err != nil {
		return err
	}
	if upload.SecretToken, err = flags.GetString("secret-token"); err != nil {
		return err
	}

	if upload.ServerURL == "" {
		if upload.ServerURL, err = defaultServerURL(ctx); err != nil {
			return err
		}
	}
	if upload.File == "" {
		if upload.File, err = defaultSourcemapFile(); err != nil {
			return err
		}
	}
	if upload.BundlePath == "" {
		upload.BundlePath = "http://opbeans-node:3000/static/js/" + filepath.Base(upload.File)
	}
	if upload.ServiceVersion == "" {
		if upload.ServiceVersion, err = defaultServiceVersion(ctx); err != nil {
			return err
		}
	}

	fmt.Printf("Uploading %s for %s version %s\n", upload.File, upload.ServiceName, upload.ServiceVersion)
	client := &http.Client{Timeout: 30 * time.Second}
	return upload.Do(ctx, client)
}

// defaultServerURL finds the published port of the running apm-server
// container and points at it over localhost.
func defaultServerURL(ctx context.Context) (string, error) {
	id, err := (docker.Compose{}).ContainerID(ctx, "apm-server")
	if err != nil {
		return "", fmt.Errorf("finding apm-server container: %w", err)
	}
	ports, err := docker.Port(ctx, id)
	if err != nil {
		return "", err
	}
	for _, line := range ports {
		if !strings.HasPrefix(line, "8200/tcp") {
			continue
		}
		_, addr, ok := strings.Cut(line, " -> ")
		if !ok {
			continue
		}
		return "http://" + strings.TrimSpace(addr), nil
	}
	return "", fmt.Errorf("apm-server does not publish port 8200, pass --server-url")
}

// defaultSourcemapFile picks up the sourcemap produced by the opbeans-node
// build, failing when none has been built yet.
func defaultSourcemapFile() (string, error) {
	matches, err := filepath.Glob("./node/sourcemaps/*.map")
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no sourcemap found under ./node/sourcemaps, pass --sourcemap-file")
	}
	return matches[0], nil
}

// defaultServiceVersion reads the service version the running opbeans-node
// container was started with.
func defaultServiceVersion(ctx context.Context) (string, error) {
	id, err := (docker.Compose{}).ContainerID(ctx, "opbeans-node")
	if err != nil {
		return "", fmt.Errorf("finding opbeans-node container: %w", err)
	}
	envs, err := docker.Inspect(ctx, "{{range .Config.Env}}{{println .}}{{end}}", id)
	if err != nil {
		return "", err
	}
	for _, env := range envs {
		if v, ok := strings.CutPrefix(env, "ELASTIC_APM_JS_BASE_SERVICE_VERSION="); ok {
			return v, nil
		}
	}
	return "", fmt.Errorf("opbeans-node container does not set a service version, pass --service-version")
}
