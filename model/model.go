// Copyright 2024 bptf Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package model defines the interface and hyper-parameter plumbing shared by
// all estimators in this module.
package model

import (
	"github.com/bayesflow/bptf/base"
)

// Model is the interface for all models. Any model in this
// package should implement it.
type Model interface {
	// SetParams sets hyper-parameters.
	SetParams(params Params)
	// GetParams returns hyper-parameters.
	GetParams() Params
	// GetParamsGrid returns the default candidate grid for hyper-parameter search.
	GetParamsGrid() ParamsGrid
	// Clear model weights.
	Clear()
	// Invalid reports whether the model has been cleared or never fitted.
	Invalid() bool
}

// BaseModel must be included by every model. Hyper-parameters and the random
// seed are managed by the BaseModel.
type BaseModel struct {
	Params    Params // Hyper-parameters
	randState int64  // Random seed
}

// SetParams sets hyper-parameters for the BaseModel.
func (model *BaseModel) SetParams(params Params) {
	model.Params = params
	model.randState = model.Params.GetInt64(RandomState, 0)
}

// GetParams returns all hyper-parameters.
func (model *BaseModel) GetParams() Params {
	return model.Params
}

// GetRandomGenerator creates a fresh generator from the configured seed.
// Every fit starts from the same generator state so that runs with identical
// seeds and inputs are reproducible.
func (model *BaseModel) GetRandomGenerator() base.RandomGenerator {
	return base.NewRandomGenerator(model.randState)
}
