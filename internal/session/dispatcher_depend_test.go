//go:build test

// Code generated by dependgen — DO NOT EDIT.
package session_test

import "github.com/srgg/testify/depend"

var DispatcherTestSuiteTestRegistry = map[string]func(any){
	"TestCommandFrames":                func(s any) { s.(*DispatcherTestSuite).TestCommandFrames() },
	"TestCommandsRequireAuthorization": func(s any) { s.(*DispatcherTestSuite).TestCommandsRequireAuthorization() },
	"TestWriteFailureNotRetried":       func(s any) { s.(*DispatcherTestSuite).TestWriteFailureNotRetried() },
}

var DispatcherTestSuiteTestOrder = []string{
	"TestCommandFrames",
	"TestCommandsRequireAuthorization",
	"TestWriteFailureNotRetried",
}

var DispatcherTestSuiteDependencies = depend.Depends(func(s any) *depend.Dep {
	dep := new(depend.Dep)
	dep.On("TestWriteFailureNotRetried", "TestCommandFrames")
	return dep
})

// GeneratedDependConfig returns the dependency configuration for DispatcherTestSuite.
// This method allows DispatcherTestSuite to be used with depend.RunSuite(t, suite).
// DO NOT implement this method manually - it is auto-generated.
func (s *DispatcherTestSuite) GeneratedDependConfig() *depend.SuiteConfig {
	return &depend.SuiteConfig{
		Registry: DispatcherTestSuiteTestRegistry,
		Order:    DispatcherTestSuiteTestOrder,
		Deps:     DispatcherTestSuiteDependencies,
	}
}
