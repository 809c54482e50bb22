package engine

import (
	"context"

	"github.com/tanq16/urlget/internal/transfer"
	"github.com/tanq16/urlget/internal/utils"
)

func (s *session) ftp(ctx context.Context) (int64, error) {
	r, err := s.readReply()
	if err != nil {
		return 0, err
	}
	if !r.is("220") {
		return 0, utils.NewError(utils.CodeFTPWeirdServerReply, "This doesn't seem like a nice ftp-server response")
	}
	if err := s.login(); err != nil {
		return 0, err
	}
	if err := s.passive(ctx); err != nil {
		return 0, err
	}

	var n int64
	if s.req.Options.Upload {
		n, err = s.store(ctx)
	} else {
		n, err = s.retrieve(ctx)
	}
	if err != nil {
		return n, err
	}

	// the server only reports once the data channel is gone
	s.closeData()
	r, err = s.readReply()
	if err != nil {
		return n, err
	}
	if !r.is("226") {
		return n, utils.NewError(utils.CodeFTPWriteError, "%s", r.text())
	}
	return n, nil
}

func (s *session) login() error {
	r, err := s.command("USER", s.url.User)
	if err != nil {
		return err
	}
	switch {
	case r.is("530"):
		return utils.NewError(utils.CodeFTPAccessDenied, "Access denied: %s", r.text())
	case r.is("331"):
		r, err = s.command("PASS", s.url.Password)
		if err != nil {
			return err
		}
		switch {
		case r.is("530"):
			return utils.NewError(utils.CodeFTPUserPasswordIncorrect, "the username and/or the password are incorrect")
		case !r.is("230"):
			return utils.NewError(utils.CodeFTPWeirdPassReply, "Odd return code after PASS")
		}
	case r.is("230"):
	default:
		return utils.NewError(utils.CodeFTPWeirdUserReply, "Odd return code after USER")
	}
	s.log.Debug().Str("op", "engine/ftp").Msg("We have successfully logged in")
	return nil
}

// passive negotiates and opens the data channel.
func (s *session) passive(ctx context.Context) error {
	r, err := s.command("PASV")
	if err != nil {
		return err
	}
	if !r.is("227") {
		return utils.NewError(utils.CodeFTPWeirdPasvReply, "Odd return code after PASV")
	}
	host, port, err := parsePASV(r.last())
	if err != nil {
		return utils.WrapError(utils.CodeFTPWeird227Format, err, "Oddly formatted 227-reply")
	}
	conn, err := s.connect(ctx, host, port, utils.CodeFTPCantGetHost, utils.CodeFTPCantReconnect)
	if err != nil {
		return err
	}
	s.data = conn
	return nil
}

func (s *session) binary() error {
	r, err := s.command("TYPE", "I")
	if err != nil {
		return err
	}
	if !r.is("200") {
		return utils.NewError(utils.CodeFTPCouldntSetBinary, "Couldn't set binary mode")
	}
	return nil
}

func (s *session) store(ctx context.Context) (int64, error) {
	if err := s.binary(); err != nil {
		return 0, err
	}
	r, err := s.command("STOR", s.url.Path)
	if err != nil {
		return 0, err
	}
	if r.code() >= 400 {
		return 0, utils.NewError(utils.CodeFTPCouldntStorFile, "Failed FTP upload: %s", r.text())
	}

	size := s.req.InputSize
	n, err := transfer.Upload(ctx, s.data, s.req.Input, s.buf, s.options(size, false))
	if err != nil {
		return n, err
	}
	if size != -1 && n != size {
		return n, utils.NewError(utils.CodeFTPPartialFile, "Wrote only partial file (%d out of %d bytes)", n, size)
	}
	return n, nil
}

func (s *session) retrieve(ctx context.Context) (int64, error) {
	path := s.url.Path
	var (
		r   *reply
		err error
	)
	if s.url.IsDirectory() {
		if path == "" {
			path = "/"
		}
		r, err = s.command("TYPE", "A")
		if err != nil {
			return 0, err
		}
		if !r.is("200") {
			return 0, utils.NewError(utils.CodeFTPCouldntSetASCII, "Couldn't set ascii mode")
		}
		verb := "LIST"
		if s.req.Options.ListOnly {
			verb = "NLST"
		}
		r, err = s.command(verb, path)
	} else {
		if err := s.binary(); err != nil {
			return 0, err
		}
		r, err = s.command("RETR", path)
	}
	if err != nil {
		return 0, err
	}
	if !r.is("150") {
		return 0, utils.NewError(utils.CodeFTPCouldntRetrFile, "%s", r.text())
	}

	size := parseSize(r.last())
	s.log.Debug().Str("op", "engine/ftp").Msgf("Getting file with size: %d", size)
	n, err := transfer.Download(ctx, s.data, s.req.Output, s.buf, s.options(size, false))
	if err != nil {
		return n, err
	}
	if size != -1 && n != size {
		return n, utils.NewError(utils.CodeFTPPartialFile, "Received only partial file (%d out of %d bytes)", n, size)
	}
	return n, nil
}
