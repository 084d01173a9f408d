package boot

import (
	"log"
	"mbs/src/common"
	"mbs/src/config"
	"mbs/src/db"
	"mbs/src/lib"
	"mbs/src/models"
	"mbs/src/utils"
	"os"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.InstructorProfile{},
		&models.AvailabilitySlot{},
		&models.SlotLock{},
		&models.Booking{},
		&models.Payment{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

// InitScheduler registers the expired-lock sweeper and starts the scheduler.
func InitScheduler() {
	jobId, err := lib.CreateCronJob(func() {
		if err := common.CleanupExpiredLocks(); err != nil {
			log.Printf("Error cleaning up expired locks: %s\n", err.Error())
		}
	}, config.LockSweepInterval())
	if err != nil {
		log.Printf("Error registering sweeper job: %s\n", err.Error())
		return
	}
	log.Printf("Job ID: %s\n", *jobId)
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while stopping Scheduler. Check logs for info")
		return
	}
}

// InitBroker provisions local topics and starts the queue consumers.
func InitBroker() {
	if os.Getenv("API_ENV") == "local" {
		go lib.KafkaCreateTopics(utils.WithSuffix(common.MeetLinkJobsQueue), utils.WithSuffix(os.Getenv("EMAIL_QUEUE")))
	}
	go common.MeetLinkJobsConsumer()
	go common.EmailQueueConsumer()
}
