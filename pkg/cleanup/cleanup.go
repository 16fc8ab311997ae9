package cleanup

import "log"

// Job is a named shutdown hook registered at startup.
type Job struct {
	Name string
	F    func() error
}

var jobs []*Job

func Register(j *Job) {
	jobs = append(jobs, j)
}

// CleanUp runs registered jobs in reverse registration order, so
// dependents shut down before the resources they use.
func CleanUp() {
	for i := len(jobs) - 1; i >= 0; i-- {
		j := jobs[i]
		log.Printf("Cleanup job %s started...", j.Name)
		if err := j.F(); err != nil {
			log.Printf("Cleanup job %s finished with error: %v", j.Name, err)
			continue
		}
		log.Printf("Cleanup job %s finished", j.Name)
	}
}
