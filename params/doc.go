// Package params loads the site-local and machine-type parameter files of a
// vehicle into immutable values.
//
// Local parameters (local.yaml) are loaded first because machine validation
// depends on the local zero tolerance. The resulting *Parameter is built once
// at startup and handed to whatever needs it; accessors return copies.
package params
