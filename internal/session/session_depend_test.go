//go:build test

// Code generated by dependgen — DO NOT EDIT.
package session_test

import "github.com/srgg/testify/depend"

var SessionTestSuiteTestRegistry = map[string]func(any){
	"TestImmediateAcceptance":        func(s any) { s.(*SessionTestSuite).TestImmediateAcceptance() },
	"TestUserAcceptanceAfterPolling": func(s any) { s.(*SessionTestSuite).TestUserAcceptanceAfterPolling() },
	"TestRejectedToken":              func(s any) { s.(*SessionTestSuite).TestRejectedToken() },
	"TestAuthorizationTimeout":       func(s any) { s.(*SessionTestSuite).TestAuthorizationTimeout() },
	"TestConnectFailure":             func(s any) { s.(*SessionTestSuite).TestConnectFailure() },
	"TestCloseDuringHandshake":       func(s any) { s.(*SessionTestSuite).TestCloseDuringHandshake() },
	"TestLinkLossWhileAwaitingUser":  func(s any) { s.(*SessionTestSuite).TestLinkLossWhileAwaitingUser() },
	"TestStartContextCancelled":      func(s any) { s.(*SessionTestSuite).TestStartContextCancelled() },
	"TestLinkLossAfterAuthorization": func(s any) { s.(*SessionTestSuite).TestLinkLossAfterAuthorization() },
	"TestCloseIsIdempotent":          func(s any) { s.(*SessionTestSuite).TestCloseIsIdempotent() },
	"TestStartTwice":                 func(s any) { s.(*SessionTestSuite).TestStartTwice() },
	"TestEventsCarrySessionID":       func(s any) { s.(*SessionTestSuite).TestEventsCarrySessionID() },
}

var SessionTestSuiteTestOrder = []string{
	"TestImmediateAcceptance",
	"TestUserAcceptanceAfterPolling",
	"TestRejectedToken",
	"TestAuthorizationTimeout",
	"TestConnectFailure",
	"TestCloseDuringHandshake",
	"TestLinkLossWhileAwaitingUser",
	"TestStartContextCancelled",
	"TestLinkLossAfterAuthorization",
	"TestCloseIsIdempotent",
	"TestStartTwice",
	"TestEventsCarrySessionID",
}

var SessionTestSuiteDependencies = depend.Depends(func(s any) *depend.Dep {
	dep := new(depend.Dep)
	dep.On("TestUserAcceptanceAfterPolling", "TestImmediateAcceptance")
	dep.On("TestLinkLossAfterAuthorization", "TestImmediateAcceptance")
	dep.On("TestEventsCarrySessionID", "TestImmediateAcceptance")
	return dep
})

// GeneratedDependConfig returns the dependency configuration for SessionTestSuite.
// This method allows SessionTestSuite to be used with depend.RunSuite(t, suite).
// DO NOT implement this method manually - it is auto-generated.
func (s *SessionTestSuite) GeneratedDependConfig() *depend.SuiteConfig {
	return &depend.SuiteConfig{
		Registry: SessionTestSuiteTestRegistry,
		Order:    SessionTestSuiteTestOrder,
		Deps:     SessionTestSuiteDependencies,
	}
}
