package config

import (
	"bytes"
	"crypto/md5"
	"crypto/rand"
	"encoding/ascii85"
	"encoding/hex"
	"fmt"
	mrand "math/rand/v2"
	"net"
	"os"
	"runtime"
	"strconv"
)

// hidePassword hides password inside a random hex secret and encodes the
// result with ascii85. It keeps the password out of casual view only.
//
// Layout before encoding: 2-digit secret length, secret head, password,
// secret tail, 2-digit tail length.
func hidePassword(password string) (string, error) {
	raw := make([]byte, 10+mrand.IntN(11))
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	secret := hex.EncodeToString(raw)
	tail := 12 + mrand.IntN(13)
	cut := len(secret) - tail

	plain := fmt.Sprintf("%02d%s%s%s%02d", len(secret), secret[:cut], password, secret[cut:], tail)

	buf := make([]byte, ascii85.MaxEncodedLen(len(plain)))
	n := ascii85.Encode(buf, []byte(plain))
	return string(buf[:n]), nil
}

// revealPassword reverses hidePassword. It returns "" when signature does
// not match this machine or the value is malformed.
func revealPassword(hidden, signature string) string {
	if signature != Signature() {
		return ""
	}

	buf := make([]byte, len(hidden))
	n, _, err := ascii85.Decode(buf, []byte(hidden), true)
	if err != nil {
		return ""
	}
	plain := string(bytes.TrimRight(buf[:n], "\x00"))
	if len(plain) < 4 {
		return ""
	}

	secretLen, err1 := strconv.Atoi(plain[:2])
	tail, err2 := strconv.Atoi(plain[len(plain)-2:])
	if err1 != nil || err2 != nil {
		return ""
	}
	body := plain[2 : len(plain)-2]
	cut := secretLen - tail
	if cut < 0 || tail < 0 || len(body) < secretLen {
		return ""
	}
	return body[cut : len(body)-tail]
}

// Signature identifies this machine: an md5 of the host name, platform
// and outbound IP address.
func Signature() string {
	host, _ := os.Hostname()
	sum := md5.Sum([]byte(host + runtime.GOARCH + runtime.GOOS + outboundIP()))
	return hex.EncodeToString(sum[:])
}

// outboundIP returns the local address used for outbound traffic. No
// packet is sent.
func outboundIP() string {
	conn, err := net.Dial("udp", "10.255.255.255:1")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}
