// Package environment provides the application environment vocabulary shared
// by configuration and logging.
//
// The environment name travels through context so that any component can make
// environment-dependent decisions without reaching for globals:
//
//	ctx := environment.WithContext(ctx, "production")
//	if environment.IsProduction(ctx) {
//	    // ...
//	}
package environment
