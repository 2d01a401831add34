//go:build tools

// Package tools lists the development tools used on this repository. They are
// run with `go run pkg@version` or installed with `go install` and are not
// tracked in go.mod.
package tools

// mockgen regenerates internal/mocks/auth_ports_mock.go from internal/ports:
//
//	go generate ./internal/mocks
//
// It runs go.uber.org/mock/mockgen@v0.6.0, matching the go.uber.org/mock
// version in go.mod.
//
// Air reloads cmd/pds while editing handlers or internal/http/views:
//
//	go install github.com/air-verse/air@v1.63.0
//	AUTH_MODE=mock DB_DISABLED=true air --build.cmd "go build -o ./tmp/pds ./cmd/pds" --build.bin ./tmp/pds
