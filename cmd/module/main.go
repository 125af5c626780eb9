package main

import (
	"go.viam.com/rdk/components/generic"
	"go.viam.com/rdk/module"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/discovery"

	"fac1"
)

func main() {
	module.ModularMain(
		resource.APIModel{API: generic.API, Model: fac1.Model},
		resource.APIModel{API: discovery.API, Model: fac1.DiscoveryModel},
	)
}
