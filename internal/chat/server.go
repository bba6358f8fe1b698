package chat

import "fmt"

// Server describes one candidate chat server from the static configuration.
// Identity is the ID; the rest is dialing information.
type Server struct {
	ID       string `mapstructure:"id" yaml:"id" json:"id"`
	Host     string `mapstructure:"host" yaml:"host" json:"host"`
	Port     int    `mapstructure:"port" yaml:"port" json:"port"`
	MaxUsers int    `mapstructure:"max_users" yaml:"max_users" json:"max_users"`
}

// BaseURL returns the root URL requests to this server are built on.
func (s Server) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", s.Host, s.Port)
}

// Label renders the server for logs and status lines.
func (s Server) Label() string {
	return fmt.Sprintf("%s (%s:%d)", s.ID, s.Host, s.Port)
}
