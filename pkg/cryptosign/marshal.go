package cryptosign

import "encoding/json"

// mustMarshalLenient marshals obj with the standard library encoder purely
// to normalize it into JSON bytes before the strict canonical decoder takes
// over. obj is a Go struct or map built by the callers (on the public verify
// endpoints it is decoded from the request body); json.Marshal does not fail
// on these shapes, so a marshal error here indicates a programming bug.
func mustMarshalLenient(obj interface{}) []byte {
	raw, err := json.Marshal(obj)
	if err != nil {
		panic("cryptosign: marshal signable object: " + err.Error())
	}
	return raw
}
