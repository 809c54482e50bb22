package utils

// Version is overridden at build time with -ldflags.
var Version = "3.12"

const (
	BufferSize        = 2048 * 5 // one I/O buffer per session
	ErrorSize         = 256      // longest message copied to Request.ErrorOutput
	AnonymousUser     = "anonymous"
	AnonymousPassword = "urlget@example.com"
	ConfigFile        = ".urlget.yaml"
	EnvPrefix         = "URLGET"
)

func UserAgent() string {
	return "urlget/" + Version
}
