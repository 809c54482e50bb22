package utils

import (
	"errors"
	"fmt"
)

// Code is the outcome of a transfer. The numeric values are stable and are
// used as the process exit status.
type Code int

const (
	CodeOK Code = iota
	CodeUnsupportedProtocol
	CodeFailedInit
	CodeURLMalformed
	CodeURLMalformedUser
	CodeCouldntResolveProxy
	CodeCouldntResolveHost
	CodeCouldntConnect
	CodeFTPWeirdServerReply
	CodeFTPAccessDenied
	CodeFTPUserPasswordIncorrect
	CodeFTPWeirdPassReply
	CodeFTPWeirdUserReply
	CodeFTPWeirdPasvReply
	CodeFTPWeird227Format
	CodeFTPCantGetHost
	CodeFTPCantReconnect
	CodeFTPCouldntSetBinary
	CodeFTPPartialFile
	CodeFTPCouldntRetrFile
	CodeFTPWriteError
	CodeHTTPNotFound
	CodeWriteError
	CodeMalformedUser
	CodeFTPCouldntStorFile
	CodeReadError
	CodeOutOfMemory
	CodeOperationTimedOut
	CodeFTPCouldntSetASCII
)

var codeNames = map[Code]string{
	CodeOK:                       "ok",
	CodeUnsupportedProtocol:      "unsupported protocol",
	CodeFailedInit:               "failed init",
	CodeURLMalformed:             "url malformed",
	CodeURLMalformedUser:         "url user malformed",
	CodeCouldntResolveProxy:      "couldn't resolve proxy",
	CodeCouldntResolveHost:       "couldn't resolve host",
	CodeCouldntConnect:           "couldn't connect",
	CodeFTPWeirdServerReply:      "ftp weird server reply",
	CodeFTPAccessDenied:          "ftp access denied",
	CodeFTPUserPasswordIncorrect: "ftp user/password incorrect",
	CodeFTPWeirdPassReply:        "ftp weird PASS reply",
	CodeFTPWeirdUserReply:        "ftp weird USER reply",
	CodeFTPWeirdPasvReply:        "ftp weird PASV reply",
	CodeFTPWeird227Format:        "ftp weird 227 format",
	CodeFTPCantGetHost:           "ftp can't get host",
	CodeFTPCantReconnect:         "ftp can't reconnect",
	CodeFTPCouldntSetBinary:      "ftp couldn't set binary",
	CodeFTPPartialFile:           "partial file",
	CodeFTPCouldntRetrFile:       "ftp couldn't retrieve file",
	CodeFTPWriteError:            "ftp write error",
	CodeHTTPNotFound:             "http error",
	CodeWriteError:               "write error",
	CodeMalformedUser:            "user malformed",
	CodeFTPCouldntStorFile:       "ftp couldn't store file",
	CodeReadError:                "read error",
	CodeOutOfMemory:              "out of memory",
	CodeOperationTimedOut:        "operation timed out",
	CodeFTPCouldntSetASCII:       "ftp couldn't set ascii",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code %d", int(c))
}

// Error lets a bare Code be used as an errors.Is target.
func (c Code) Error() string {
	return c.String()
}

// Error is a classified transfer failure.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func WrapError(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	if c, ok := target.(Code); ok {
		return e.Code == c
	}
	return false
}

// CodeOf extracts the Code of err. A nil error is CodeOK and an error that
// was never classified is CodeFailedInit.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeFailedInit
}
