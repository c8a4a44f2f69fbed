package domain

import (
	"fmt"
	"math"
)

// RecipeRequirement 配方的單一原料需求
type RecipeRequirement struct {
	IngredientID string  `json:"ingredientId" yaml:"ingredient_id"`
	Quantity     float64 `json:"quantity" yaml:"quantity"`
	Unit         string  `json:"unit" yaml:"unit"`
	Optional     bool    `json:"optional" yaml:"optional"`
}

// Recipe 配方
type Recipe struct {
	ID              string              `json:"id" yaml:"id"`
	Name            string              `json:"name" yaml:"name"`
	Style           string              `json:"style" yaml:"style"`
	BatchSizeLiters float64             `json:"batchSizeLiters" yaml:"batch_size_liters"`
	ABV             float64             `json:"abv" yaml:"abv"`
	IBU             float64             `json:"ibu" yaml:"ibu"`
	Requirements    []RecipeRequirement `json:"requirements" yaml:"requirements"`
}

// Validate 檢查結構性缺漏；單位是否相容留給評估時逐配方回報
func (r Recipe) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("recipe id is required")
	}
	if r.Name == "" {
		return fmt.Errorf("recipe %s: name is required", r.ID)
	}
	for i, req := range r.Requirements {
		if req.IngredientID == "" {
			return fmt.Errorf("recipe %s: requirement %d: ingredient id is required", r.ID, i)
		}
		if req.Unit == "" {
			return fmt.Errorf("recipe %s: requirement %d: unit is required", r.ID, i)
		}
	}
	return nil
}

// SubstitutionRule 有向替代關係：1 單位 from 需求可由 ConversionRatio 單位的 to 滿足
type SubstitutionRule struct {
	FromIngredientID string  `json:"fromIngredientId" yaml:"from"`
	ToIngredientID   string  `json:"toIngredientId" yaml:"to"`
	ConversionRatio  float64 `json:"conversionRatio" yaml:"conversion_ratio"`
	SuitabilityScore float64 `json:"suitabilityScore" yaml:"suitability_score"`
}

// Validate 檢查比例與分數範圍
func (s SubstitutionRule) Validate() error {
	if s.FromIngredientID == "" || s.ToIngredientID == "" {
		return fmt.Errorf("substitution rule requires both from and to ingredient ids")
	}
	if math.IsNaN(s.ConversionRatio) || math.IsInf(s.ConversionRatio, 0) || s.ConversionRatio <= 0 {
		return fmt.Errorf("substitution %s->%s: conversion ratio must be > 0", s.FromIngredientID, s.ToIngredientID)
	}
	if math.IsNaN(s.SuitabilityScore) || s.SuitabilityScore < 0 || s.SuitabilityScore > 1 {
		return fmt.Errorf("substitution %s->%s: suitability score must be within [0,1]", s.FromIngredientID, s.ToIngredientID)
	}
	return nil
}
