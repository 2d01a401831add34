// Package mocks provides gomock implementations of the auth ports for tests.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	provider := mocks.NewMockAuthProvider(ctrl)
//	provider.EXPECT().Exchange(gomock.Any(), gomock.Any()).Return(identity, nil)
package mocks

// AuthProvider: Begin, Exchange.
// AccessTokenVerifier: VerifyAccessToken.
// ProfileRepository: Get, Ensure.
// NavIntentStore: Claim, Get, Settle, Clear.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=auth_ports_mock.go github.com/pdsapp/pds/internal/ports AuthProvider,AccessTokenVerifier,ProfileRepository,NavIntentStore
