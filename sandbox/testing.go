package sandbox

import (
	"sync"
)

// Shared engine for tests: compiling the QuickJS image dominates test
// runtime, so integration tests reuse one warm engine instead of paying
// the compile cost per test.
var (
	testEngineMu   sync.Mutex
	testEngine     *Engine
	testEngineErr  error
	testEngineInit bool
)

// GetTestEngine returns a shared limit-free engine backed by the built-in
// module image. The engine is created once and reused; a failed creation
// is cached the same way.
func GetTestEngine() (*Engine, error) {
	testEngineMu.Lock()
	defer testEngineMu.Unlock()

	if !testEngineInit {
		testEngine, testEngineErr = New(DefaultModule())
		testEngineInit = true
	}
	return testEngine, testEngineErr
}

// CloseTestEngine closes the shared test engine and resets the cache so a
// later GetTestEngine builds a fresh one. Call from TestMain if needed;
// typically unnecessary. Safe to call repeatedly.
func CloseTestEngine() {
	testEngineMu.Lock()
	defer testEngineMu.Unlock()

	if testEngine != nil {
		testEngine.Close()
	}
	testEngine = nil
	testEngineErr = nil
	testEngineInit = false
}
