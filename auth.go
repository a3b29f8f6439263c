package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minios-linux/potranslate/config"
	"github.com/minios-linux/potranslate/i18n"
	"github.com/minios-linux/potranslate/provider"
	"github.com/minios-linux/potranslate/settings"
)

// keyHelp points users to the page where a provider's key is issued.
var keyHelp = map[string]string{
	provider.OpenAI:     "https://platform.openai.com/api-keys",
	provider.DeepSeek:   "https://platform.deepseek.com/api_keys",
	provider.Zhipu:      "https://open.bigmodel.cn/usercenter/apikeys",
	provider.Moonshot:   "https://platform.moonshot.cn/console/api-keys",
	provider.Qwen:       "https://dashscope.console.aliyun.com/apiKey",
	provider.HuaweiMaaS: "https://console.huaweicloud.com/modelarts/",
}

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored API keys",
		Long: `Manage the API keys stored in $XDG_DATA_HOME/potranslate/auth.json.

A key given with --api-key or POTRANSLATE_API_KEY takes precedence over the
stored one.

Examples:
  potranslate auth login --provider deepseek     Store a DeepSeek key
  potranslate auth login --provider custom       Store a key and endpoint URL
  potranslate auth logout --provider deepseek    Remove the DeepSeek key
  potranslate auth logout                        Remove all keys
  potranslate auth list                          Show stored keys`,
	}
	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)
	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			if id == "" {
				var err error
				if id, err = chooseProvider(in, stderr); err != nil {
					return err
				}
			}
			spec, ok := provider.Lookup(id)
			if !ok {
				return fmt.Errorf("unknown provider %q (available: %s)", id, strings.Join(provider.IDs(), ", "))
			}
			return authLogin(in, stderr, spec)
		},
	}
	cmd.Flags().StringVar(&id, "provider", "", "Provider to store a key for (default: ask)")
	_ = cmd.RegisterFlagCompletionFunc("provider", completeProviders)
	return cmd
}

func chooseProvider(in *bufio.Reader, w io.Writer) (string, error) {
	fmt.Fprintf(w, "\n%s\n", cyan(i18n.T("Select a provider")))
	specs := provider.Specs()
	for i, spec := range specs {
		fmt.Fprintf(w, "  %d) %-12s %s\n", i+1, spec.ID, spec.Name)
	}
	fmt.Fprint(w, i18n.T("Provider: "))
	answer, err := readLine(in)
	if err != nil {
		return "", err
	}
	var n int
	if _, err := fmt.Sscanf(answer, "%d", &n); err == nil && n >= 1 && n <= len(specs) {
		return specs[n-1].ID, nil
	}
	return answer, nil
}

func authLogin(in *bufio.Reader, w io.Writer, spec provider.Spec) error {
	fmt.Fprintf(w, "\n%s\n", cyan(i18n.Tf("%s API key setup", spec.Name)))
	fmt.Fprintln(w, strings.Repeat("─", 60))
	if url := keyHelp[spec.ID]; url != "" {
		fmt.Fprintln(w, i18n.Tf("  Get your API key from: %s", green(url)))
	}

	baseURL := settings.GetBaseURL(spec.ID)
	if spec.Endpoint == "" {
		if baseURL != "" {
			fmt.Fprintln(w, i18n.Tf("  Current endpoint: %s", baseURL))
		}
		fmt.Fprint(w, i18n.T("  Endpoint URL: "))
		answer, err := readLine(in)
		if err != nil {
			return err
		}
		if answer != "" {
			baseURL = answer
		}
		if baseURL == "" {
			return fmt.Errorf("provider %s requires an API endpoint URL", spec.ID)
		}
	}

	existing := settings.GetAPIKey(spec.ID)
	if existing != "" {
		fmt.Fprintln(w, i18n.Tf("  Current key: %s", yellow(settings.MaskKey(existing))))
		fmt.Fprint(w, i18n.T("  Enter new key to replace, or press Enter to keep: "))
	} else {
		fmt.Fprint(w, i18n.T("  Enter API key: "))
	}
	key, err := readLine(in)
	if err != nil {
		return err
	}
	if key == "" {
		if existing == "" {
			return fmt.Errorf("no API key provided")
		}
		key = existing
	}

	if err := settings.SetAPIKey(spec.ID, key, baseURL); err != nil {
		return fmt.Errorf("saving API key: %w", err)
	}
	logSuccess("%s", i18n.Tf("%s API key saved to %s", spec.Name, settings.FilePath()))
	return nil
}

// readLine returns the next trimmed input line. A final line without a
// newline is accepted.
func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("no input received")
	}
	return strings.TrimSpace(line), nil
}

func newAuthLogoutCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored API keys",
		Long: `Remove the stored key of one provider, or of all providers when
--provider is not given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				if err := settings.RemoveAll(); err != nil {
					return err
				}
				logSuccess("%s", i18n.T("All stored credentials removed"))
				return nil
			}
			if _, ok := provider.Lookup(id); !ok {
				return fmt.Errorf("unknown provider %q (available: %s)", id, strings.Join(provider.IDs(), ", "))
			}
			if err := settings.Remove(id); err != nil {
				return fmt.Errorf("removing %s credentials: %w", id, err)
			}
			logSuccess("%s", i18n.Tf("%s credentials removed", id))
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "provider", "", "Provider to log out (default: all)")
	_ = cmd.RegisterFlagCompletionFunc("provider", completeProviders)
	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored API keys",
		Run: func(cmd *cobra.Command, args []string) {
			printCredentials(cmd.OutOrStdout())
		},
	}
}

func printCredentials(w io.Writer) {
	store := settings.Load()
	fmt.Fprintf(w, "\n%s\n", cyan(i18n.T("Stored credentials")))
	fmt.Fprintln(w, strings.Repeat("─", 60))
	for _, spec := range provider.Specs() {
		info := store[spec.ID]
		if info == nil {
			fmt.Fprintf(w, "  %-14s %s\n", spec.ID, red(i18n.T("not configured")))
			continue
		}
		fmt.Fprintf(w, "  %-14s %s (%s)\n", spec.ID, green(i18n.T("configured")), settings.MaskKey(info.Key))
		if info.BaseURL != "" {
			fmt.Fprintf(w, "  %14s endpoint: %s\n", "", info.BaseURL)
		}
	}

	envVar := config.EnvPrefix + "API_KEY"
	if key := os.Getenv(envVar); key != "" {
		fmt.Fprintf(w, "\n  %s: %s %s\n", envVar, green(settings.MaskKey(key)), i18n.T("(overrides stored keys)"))
	} else {
		fmt.Fprintf(w, "\n  %s: %s\n", envVar, red(i18n.T("not set")))
	}
	fmt.Fprintf(w, "\n  %s\n\n", settings.FilePath())
}
