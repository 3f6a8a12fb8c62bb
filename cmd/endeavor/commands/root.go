package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"endeavor-cli/lib/configutil"
	"endeavor-cli/lib/scrapers/endeavor"
	"endeavor-cli/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	credsPath      string
	baseUrl        string
	emulateBrowser bool
	verbose        bool
)

var rootCmd = &cobra.Command{
	Use:   "endeavor",
	Short: "endeavor is a CLI for reporting hours on the Endeavor timesheet portal.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&credsPath, "creds", "c", "creds.txt",
		"credentials file: exactly two lines, username then password")
	rootCmd.PersistentFlags().StringVar(&baseUrl, "base-url", endeavor.DefaultBaseUrl,
		"origin of the timesheet portal")
	rootCmd.PersistentFlags().BoolVar(&emulateBrowser, "emulate-browser", false,
		"issue extra requests so the traffic better matches what a browser would do")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"log every request at debug level")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type Config struct {
	BaseUrl  string `json:"base_url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// credentials come from the two line creds file when it exists,
// otherwise from an endeavor.json5 found up the filesystem
func loadCredentials() (string, string, error) {
	raw, err := os.ReadFile(credsPath)
	if err != nil && !os.IsNotExist(err) {
		return "", "", err
	}
	if err == nil {
		var lines []string
		for _, line := range strings.Split(string(raw), "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) != 2 {
			return "", "", fmt.Errorf("%s must have exactly 2 lines", credsPath)
		}
		return lines[0], lines[1], nil
	}

	config, err := configutil.ReadRecursively[Config]("endeavor.json5")
	if err != nil {
		return "", "", fmt.Errorf(
			"no credentials: %s does not exist and no endeavor.json5 was found", credsPath,
		)
	}
	if config.Username == "" || config.Password == "" {
		return "", "", fmt.Errorf("endeavor.json5 must set both username and password")
	}
	return config.Username, config.Password, nil
}

func newSession(ctx context.Context) (*endeavor.Client, error) {
	username, password, err := loadCredentials()
	if err != nil {
		return nil, err
	}

	client, err := endeavor.NewClient(endeavor.ClientOptions{
		BaseUrl:        baseUrl,
		EmulateBrowser: emulateBrowser,
	})
	if err != nil {
		return nil, err
	}

	err = client.Login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("failed to login: %w", err)
	}
	return client, nil
}
