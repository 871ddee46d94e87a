package testutil

import "github.com/bytedance/sonic"

func marshalEcho(e EchoRequest) []byte {
	out, err := sonic.Marshal(e)
	if err != nil {
		return []byte(`{}`)
	}

	return out
}
