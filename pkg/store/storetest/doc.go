// Package storetest provides a conformance test suite for object cache
// backends.
//
// Every store.Database implementation (memory, badger, redis, s3) should pass
// these tests.
//
// Usage:
//
//	func TestConformance(t *testing.T) {
//	    storetest.RunConformanceSuite(t, func(t *testing.T) store.Database {
//	        return memory.New()
//	    })
//	}
//
// The factory receives *testing.T so it can call t.TempDir() for stores that
// need filesystem paths and t.Cleanup() for teardown.
package storetest
