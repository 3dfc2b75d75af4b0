package models

import (
	"strings"

	"github.com/creditbridge/decision-service/domain"
)

// CheckSchema verifies the input declares exactly the feature_set and
// feature_version a Model/Detector requires.
func CheckSchema(component, requiredSet, requiredVersion, featureSet, featureVersion string) error {
	if featureSet != requiredSet {
		return &domain.FeatureCompatibilityError{Component: component, Reason: "wrong feature set: expected " + requiredSet + ", got " + featureSet}
	}
	if featureVersion != requiredVersion {
		return &domain.FeatureCompatibilityError{Component: component, Reason: "wrong feature version: expected " + requiredVersion + ", got " + featureVersion}
	}
	return nil
}

// RequireKeys checks that every key in required is present in features,
// returning a FeatureCompatibilityError listing the missing ones.
func RequireKeys(component string, required []string, features map[string]float64) error {
	var missing []string
	for _, k := range required {
		if _, ok := features[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return &domain.FeatureCompatibilityError{Component: component, Reason: "missing required feature keys: " + strings.Join(missing, ", ")}
	}
	return nil
}
