package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tanq16/urlget/internal/engine"
	"github.com/tanq16/urlget/internal/output"
	"github.com/tanq16/urlget/internal/utils"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "urlget [OPTIONS] <url>",
	Short: "urlget gets (and puts) files over HTTP, FTP and GOPHER",
	Long: `urlget transfers a single URL and writes the result to stdout or a file.

  <url> ::= [<proto> "://"] [<user> ":" <password> "@"] <host> [":" <port>] ["/" <path>]
  <proto> is HTTP, FTP or GOPHER; without one it is guessed from the host name.`,
	Version:       utils.Version,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(viper.GetBool("debug") || viper.GetBool("verbose"))
	},
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(int(run(cmd.Context(), args[0])))
	},
}

// run performs one transfer and returns the exit status.
func run(ctx context.Context, url string) utils.Code {
	log := utils.GetLogger("cli")
	req, closeFiles, err := buildRequest(url)
	if err != nil {
		output.PrintError(err.Error())
		return utils.CodeOf(err)
	}
	defer closeFiles()

	log.Debug().Str("op", "cli/run").Str("url", req.URL).Msg("starting transfer")
	_, err = engine.Perform(ctx, req)
	return utils.CodeOf(err)
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		output.PrintError(fmt.Sprintf("Error: %v", err))
		os.Exit(int(utils.CodeFailedInit))
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// transfer options shared with the batch command
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default $HOME/"+utils.ConfigFile+")")
	pf.Bool("debug", false, "Enable debug logging")
	pf.BoolP("verbose", "v", false, "Make the operation more talkative")
	pf.BoolP("silent", "s", false, "Silent mode, no progress meter")
	pf.BoolP("fail", "f", false, "Fail silently (no output at all) on HTTP errors")
	pf.BoolP("keep-alive", "k", false, "Send Connection: Keep-Alive to HTTP servers")
	pf.BoolP("list-only", "l", false, "Use NLST instead of LIST for FTP directories")
	pf.IntP("max-time", "m", 0, "Maximum time in seconds the transfer may take")
	pf.IntP("port", "p", 0, "Use this port number instead of the default")
	pf.StringP("proxy", "x", "", "Use proxy [user:password@]host[:port] (default port 1080)")
	pf.StringP("proxy-user", "U", "", "Proxy user and password <user:password>")
	pf.StringP("user", "u", "", "User and password <user:password>")
	pf.StringP("referer", "e", "", "Referer page")
	pf.Int64("limit-rate", 0, "Maximum transfer rate in bytes per second")

	f := rootCmd.Flags()
	f.StringP("data", "d", "", "HTTP POST data")
	f.BoolP("include", "i", false, "Include the HTTP header in the output")
	f.BoolP("head", "I", false, "Fetch the HTTP header only (HEAD)")
	f.StringP("output", "o", "", "Write output to <file> instead of stdout")
	f.BoolP("remote-name", "O", false, "Write output to a file named as the remote file")
	f.StringP("range", "r", "", "Retrieve a byte range from an HTTP/1.1 server <from-to>")
	f.BoolP("upload", "t", false, "Upload stdin to the FTP URL")
	f.StringP("upload-file", "T", "", "Upload <file> to the FTP URL")

	viper.BindPFlags(pf)
	viper.BindPFlags(f)

	rootCmd.AddCommand(newBatchCmd())
}
