package model

import "gorm.io/gorm"

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Document{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&Family{}, &DocumentSequence{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&DependencyEdge{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&TransitionRecord{}); err != nil {
		return err
	}

	return nil
}
