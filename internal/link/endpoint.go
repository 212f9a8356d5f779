package link

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

const (
	MinPort = 1
	MaxPort = 65535
)

type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return "unknown"
	}
}

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "client":
		return RoleClient, nil
	case "server":
		return RoleServer, nil
	default:
		return 0, fmt.Errorf("%w: unknown role %q", ErrValidation, s)
	}
}

// Endpoint is what the user confirmed in the link dialog. Host is only
// meaningful for RoleClient.
type Endpoint struct {
	Role Role
	Host string
	Port int
}

// ParseEndpoint validates raw dialog input. Nothing touches the network here.
func ParseEndpoint(role Role, host, port string) (Endpoint, error) {
	p, err := strconv.Atoi(port)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: port %q is not a number", ErrValidation, port)
	}

	ep := Endpoint{Role: role, Host: strings.TrimSpace(host), Port: p}
	if role == RoleServer {
		ep.Host = ""
	}

	if err := ep.Validate(); err != nil {
		return Endpoint{}, err
	}
	return ep, nil
}

func (e Endpoint) Validate() error {
	if e.Role != RoleClient && e.Role != RoleServer {
		return fmt.Errorf("%w: unknown role %d", ErrValidation, int(e.Role))
	}
	if e.Port < MinPort || e.Port > MaxPort {
		return fmt.Errorf("%w: port %d out of range [%d, %d]", ErrValidation, e.Port, MinPort, MaxPort)
	}
	if e.Role == RoleClient && strings.TrimSpace(e.Host) == "" {
		return fmt.Errorf("%w: host is required in client role", ErrValidation)
	}
	return nil
}

// Address is the dial target for clients and the bind address for servers.
func (e Endpoint) Address() string {
	port := strconv.Itoa(e.Port)
	if e.Role == RoleServer {
		return net.JoinHostPort("", port)
	}
	return net.JoinHostPort(e.Host, port)
}

func (e Endpoint) String() string {
	return e.Role.String() + " " + e.Address()
}
