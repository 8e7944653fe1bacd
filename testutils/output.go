package testutils

import (
	"encoding/json"
	"fmt"
)

// OutputIndent pretty-prints a value as indented JSON. Used by tests and the
// ledgerdump tool to inspect clip metadata.
func OutputIndent(v interface{}) {
	blob, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		panic(err)
	}
	fmt.Println(string(blob))
}
