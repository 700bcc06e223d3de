package tunnel

import (
	"strconv"
	"strings"

	"github.com/zx06/xssh/internal/errors"
)

// Spec 描述一条本地转发：local_port:remote_host:remote_port。
type Spec struct {
	LocalPort  int
	RemoteHost string
	RemotePort int
}

// ParseSpec 解析并校验一条转发描述。非法描述在任何网络活动之前拒绝。
func ParseSpec(s string) (Spec, *errors.XError) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Spec{}, errors.New(errors.CodeForwardInvalid, "forward spec must be local_port:remote_host:remote_port", map[string]any{"spec": s})
	}
	localPort, err := parsePort(parts[0])
	if err != nil {
		return Spec{}, errors.Wrap(errors.CodeForwardInvalid, "invalid local port in forward spec", map[string]any{"spec": s}, err)
	}
	if parts[1] == "" {
		return Spec{}, errors.New(errors.CodeForwardInvalid, "empty remote host in forward spec", map[string]any{"spec": s})
	}
	remotePort, err := parsePort(parts[2])
	if err != nil {
		return Spec{}, errors.Wrap(errors.CodeForwardInvalid, "invalid remote port in forward spec", map[string]any{"spec": s}, err)
	}
	return Spec{LocalPort: localPort, RemoteHost: parts[1], RemotePort: remotePort}, nil
}

// ParseSpecs 解析全部转发描述；任一非法即整体失败。
func ParseSpecs(specs []string) ([]Spec, *errors.XError) {
	out := make([]Spec, 0, len(specs))
	for _, s := range specs {
		spec, xe := ParseSpec(s)
		if xe != nil {
			return nil, xe
		}
		out = append(out, spec)
	}
	return out, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if p < 1 || p > 65535 {
		return 0, strconv.ErrRange
	}
	return p, nil
}
