// Package codec holds the encoders used on the wire.
package codec

const table64 = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// Encode returns the standard base64 encoding of in, padded with '='.
func Encode(in []byte) string {
	out := make([]byte, 0, (len(in)+2)/3*4)
	for len(in) > 0 {
		var group [3]byte
		parts := copy(group[:], in)
		in = in[parts:]

		out = append(out,
			table64[group[0]>>2],
			table64[(group[0]&0x03)<<4|group[1]>>4],
			table64[(group[1]&0x0f)<<2|group[2]>>6],
			table64[group[2]&0x3f],
		)
		switch parts {
		case 1:
			out[len(out)-2] = '='
			out[len(out)-1] = '='
		case 2:
			out[len(out)-1] = '='
		}
	}
	return string(out)
}

// BasicAuth returns the value of a Basic authorization header.
func BasicAuth(user, password string) string {
	return "Basic " + Encode([]byte(user+":"+password))
}
