package cmd

import (
	"io"
	"os"
	"time"

	"github.com/spf13/viper"
	"github.com/tanq16/urlget/internal/output"
	"github.com/tanq16/urlget/internal/utils"
)

// baseRequest fills the options shared by single and batch transfers.
func baseRequest(url string) *utils.Request {
	req := utils.NewRequest(url)
	req.Port = viper.GetInt("port")
	req.Proxy = viper.GetString("proxy")
	req.UserPassword = viper.GetString("user")
	req.ProxyUserPassword = viper.GetString("proxy-user")
	req.Referer = viper.GetString("referer")
	req.Timeout = time.Duration(viper.GetInt("max-time")) * time.Second
	req.MaxRate = viper.GetInt64("limit-rate")
	req.Options.Verbose = viper.GetBool("verbose")
	req.Options.NoProgress = viper.GetBool("silent")
	req.Options.FailOnError = viper.GetBool("fail")
	req.Options.KeepAlive = viper.GetBool("keep-alive")
	req.Options.ListOnly = viper.GetBool("list-only")
	return req
}

// buildRequest turns the command line into a request. The returned func
// closes the files it opened.
func buildRequest(url string) (*utils.Request, func(), error) {
	var files []io.Closer
	closeFiles := func() {
		for _, f := range files {
			f.Close()
		}
	}

	req := baseRequest(url)
	req.Range = viper.GetString("range")
	if viper.GetBool("head") {
		req.Options.HeadOnly = true
		req.Options.IncludeHeader = true
	}
	if viper.GetBool("include") {
		req.Options.IncludeHeader = true
	}
	if data := viper.GetString("data"); data != "" {
		req.Options.Post = true
		req.PostFields = data
	}

	outFile := viper.GetString("output")
	remoteName := viper.GetBool("remote-name")
	uploadFile := viper.GetString("upload-file")
	uploadStdin := viper.GetBool("upload")
	if (uploadFile != "" || uploadStdin) && (outFile != "" || remoteName) {
		return nil, closeFiles, utils.NewError(utils.CodeFailedInit, "you can't both upload and output to a file")
	}

	if remoteName {
		name, err := utils.RemoteFileName(url)
		if err != nil {
			return nil, closeFiles, err
		}
		outFile = name
		if _, err := os.Stat(outFile); err == nil {
			outFile = utils.RenewOutputPath(outFile)
			output.PrintInfo("Remote file name exists locally, writing to " + outFile)
		}
	}
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return nil, closeFiles, utils.WrapError(utils.CodeWriteError, err, "Can't open '%s' for writing", outFile)
		}
		files = append(files, f)
		req.Output = f
	}

	switch {
	case uploadFile != "":
		f, err := os.Open(uploadFile)
		if err != nil {
			closeFiles()
			return nil, func() {}, utils.WrapError(utils.CodeReadError, err, "Can't open '%s' for reading", uploadFile)
		}
		files = append(files, f)
		if st, err := f.Stat(); err == nil {
			req.InputSize = st.Size()
		}
		req.URL = utils.UploadURL(url, uploadFile)
		req.Input = f
		req.Options.Upload = true
	case uploadStdin:
		req.Input = os.Stdin
		req.Options.Upload = true
	}

	// the meter would garble data written to the same terminal
	if output.IsTerminal(req.Output) {
		req.Options.NoProgress = true
	}
	return req, closeFiles, nil
}
