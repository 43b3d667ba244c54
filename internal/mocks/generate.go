// Package mocks provides gomock implementations of the ports used by the session
// and dashboard services.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	profiles := mocks.NewMockProfileLookup(ctrl)
//	profiles.EXPECT().GetUserProfile(gomock.Any(), "u-1").Return(profile, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=profile_lookup_mock.go github.com/target/learnhub/internal/ports ProfileLookup

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=batch_reader_mock.go github.com/target/learnhub/internal/ports BatchReader

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=token_store_mock.go github.com/target/learnhub/internal/ports TokenStore
