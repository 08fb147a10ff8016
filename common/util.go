package common

import "os"

func PanicIfErr(err error) {
	if err != nil {
		panic(err)
	}
}

// Contains tells whether arr contains x.
func Contains(arr []int, x int) bool {
	for _, n := range arr {
		if x == n {
			return true
		}
	}
	return false
}

// Remove deletes a database file. Missing files are not an error, tests call
// this in deferred cleanups.
func Remove(file string) {
	_ = os.Remove(file)
}
