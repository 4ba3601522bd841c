// Package cascade deletes course content in dependency order inside a single
// transaction, then cleans up stored files.
package cascade

import (
	"fmt"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/s/learnhub/internal/logger"
	"github.com/s/learnhub/internal/models"
	"github.com/s/learnhub/internal/storage"
)

var ErrNotFound = errors.New("not found")

type Deleter struct {
	DB    *gorm.DB
	Files storage.FileStore
	Log   logger.Logger
}

func NewDeleter(db *gorm.DB, files storage.FileStore, log logger.Logger) *Deleter {
	return &Deleter{DB: db, Files: files, Log: log}
}

// run executes fn in a transaction and removes the collected files once it
// has committed.
func (d *Deleter) run(what string, fn func(tx *gorm.DB, files *[]string) error) error {
	var files []string
	err := d.DB.Transaction(func(tx *gorm.DB) error {
		return fn(tx, &files)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return errors.Wrapf(err, "deleting %s", what)
	}
	for _, ref := range files {
		if ref == "" {
			continue
		}
		if err := d.Files.Remove(ref); err != nil {
			d.Log.Warn(fmt.Sprintf("could not remove file %q after deleting %s", ref, what), err)
		}
	}
	return nil
}

func first(tx *gorm.DB, dest interface{}, id uint) error {
	err := tx.First(dest, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// lesson deletes progress, quiz results, questions, quiz, submissions,
// assignment and finally the lesson row.
func lesson(tx *gorm.DB, id uint, files *[]string) error {
	if err := tx.Where("lesson_id = ?", id).Delete(&models.LessonProgress{}).Error; err != nil {
		return err
	}

	var quizIDs []uint
	if err := tx.Model(&models.Quiz{}).Where("lesson_id = ?", id).Pluck("id", &quizIDs).Error; err != nil {
		return err
	}
	if len(quizIDs) > 0 {
		if err := tx.Where("quiz_id IN ?", quizIDs).Delete(&models.QuizResult{}).Error; err != nil {
			return err
		}
		if err := tx.Where("quiz_id IN ?", quizIDs).Delete(&models.Question{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", quizIDs).Delete(&models.Quiz{}).Error; err != nil {
			return err
		}
	}

	var assignments []models.Assignment
	if err := tx.Where("lesson_id = ?", id).Find(&assignments).Error; err != nil {
		return err
	}
	for _, a := range assignments {
		var refs []string
		if err := tx.Model(&models.Submission{}).Where("assignment_id = ?", a.ID).Pluck("file_path", &refs).Error; err != nil {
			return err
		}
		if err := tx.Where("assignment_id = ?", a.ID).Delete(&models.Submission{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Assignment{}, a.ID).Error; err != nil {
			return err
		}
		*files = append(*files, refs...)
		*files = append(*files, a.ResourcePath)
	}

	return tx.Delete(&models.Lesson{}, id).Error
}

func module(tx *gorm.DB, id uint, files *[]string) error {
	var lessonIDs []uint
	if err := tx.Model(&models.Lesson{}).Where("module_id = ?", id).Pluck("id", &lessonIDs).Error; err != nil {
		return err
	}
	for _, lid := range lessonIDs {
		if err := lesson(tx, lid, files); err != nil {
			return err
		}
	}
	return tx.Delete(&models.Module{}, id).Error
}

func course(tx *gorm.DB, c models.Course, files *[]string) error {
	var moduleIDs []uint
	if err := tx.Model(&models.Module{}).Where("course_id = ?", c.ID).Pluck("id", &moduleIDs).Error; err != nil {
		return err
	}
	for _, mid := range moduleIDs {
		if err := module(tx, mid, files); err != nil {
			return err
		}
	}
	if err := tx.Where("course_id = ?", c.ID).Delete(&models.Enrollment{}).Error; err != nil {
		return err
	}
	if err := tx.Delete(&models.Course{}, c.ID).Error; err != nil {
		return err
	}
	*files = append(*files, c.ThumbnailURL)
	return nil
}

func (d *Deleter) DeleteLesson(id uint) error {
	return d.run("lesson", func(tx *gorm.DB, files *[]string) error {
		if err := first(tx, &models.Lesson{}, id); err != nil {
			return err
		}
		return lesson(tx, id, files)
	})
}

func (d *Deleter) DeleteModule(id uint) error {
	return d.run("module", func(tx *gorm.DB, files *[]string) error {
		if err := first(tx, &models.Module{}, id); err != nil {
			return err
		}
		return module(tx, id, files)
	})
}

// DeleteCourse removes the course, its whole content tree and its enrollments.
func (d *Deleter) DeleteCourse(id uint) error {
	return d.run("course", func(tx *gorm.DB, files *[]string) error {
		var c models.Course
		if err := first(tx, &c, id); err != nil {
			return err
		}
		return course(tx, c, files)
	})
}

// DeleteCategory removes every course of the category, then the category.
func (d *Deleter) DeleteCategory(id uint) error {
	return d.run("category", func(tx *gorm.DB, files *[]string) error {
		if err := first(tx, &models.Category{}, id); err != nil {
			return err
		}
		var courses []models.Course
		if err := tx.Where("category_id = ?", id).Find(&courses).Error; err != nil {
			return err
		}
		for _, c := range courses {
			if err := course(tx, c, files); err != nil {
				return err
			}
		}
		return tx.Delete(&models.Category{}, id).Error
	})
}
