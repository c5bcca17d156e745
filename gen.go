// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unbundle

//go:generate mockgen -destination=./mocks/source.go -package=mocks github.com/hashicorp/go-unbundle Source
//go:generate mockgen -destination=./mocks/target.go -package=mocks github.com/hashicorp/go-unbundle Target
