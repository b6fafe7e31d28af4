// Package k8sdriver is the real Cluster Driver (spec.md §4.3), grounded on
// the pod-phase-to-outcome mapping pattern of the k8sapi.Executor and
// TaskRunPhase reference code: it creates batch/v1 Jobs whose pod runs the
// Init Side-car as an init container ahead of the user's main container,
// and classifies pod phase into a terminal Outcome, defaulting every
// ambiguous phase to Unknown.
package k8sdriver

import (
	"context"
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/flowmium-io/flowmium/internal/clusterdriver"
	"github.com/flowmium-io/flowmium/internal/platform/logger"
	"github.com/flowmium-io/flowmium/internal/types"
)

const (
	initSidecarFetchName = "flowmium-fetch"
	initSidecarPushName  = "flowmium-push"
	mainContainerName    = "task"
	sharedVolumeName     = "flowmium-artifacts"
	sharedVolumeMount    = "/var/run/flowmium"

	// mainExitCodeFile is where the main container's wrapper records its
	// exit code; the push side-car polls for it so a post-phase push only
	// ever follows a successful main command (spec.md §4.8).
	mainExitCodeFile = sharedVolumeMount + "/.flowmium-exit-code"
)

type Driver struct {
	client             kubernetes.Interface
	namespace          string
	initContainerImage string
	storeURL           string
	log                *logger.Logger
}

func New(client kubernetes.Interface, namespace, initContainerImage, storeURL string, log *logger.Logger) *Driver {
	return &Driver{
		client:             client,
		namespace:          namespace,
		initContainerImage: initContainerImage,
		storeURL:           storeURL,
		log:                log.With("component", "ClusterDriver"),
	}
}

func (d *Driver) Submit(ctx context.Context, flowID uint64, taskIndex int, task types.TaskDefinition, env []clusterdriver.ResolvedEnv) error {
	name := clusterdriver.JobName(flowID, taskIndex)

	_, err := d.client.BatchV1().Jobs(d.namespace).Get(ctx, name, metav1.GetOptions{})
	if err == nil {
		// Re-submission of an identical job is a no-op (spec.md §4.2).
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return fmt.Errorf("get existing job %s: %w", name, err)
	}

	mainEnv := make([]corev1.EnvVar, 0, len(env))
	for _, e := range env {
		mainEnv = append(mainEnv, corev1.EnvVar{Name: e.Name, Value: e.Value})
	}

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: d.namespace,
			Labels: map[string]string{
				"flowmium.io/flow-id":    fmt.Sprintf("%d", flowID),
				"flowmium.io/task-index": fmt.Sprintf("%d", taskIndex),
				"flowmium.io/task-name":  task.Name,
			},
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: ptrInt32(0),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{
						"flowmium.io/flow-id":    fmt.Sprintf("%d", flowID),
						"flowmium.io/task-index": fmt.Sprintf("%d", taskIndex),
					},
				},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Volumes: []corev1.Volume{
						{Name: sharedVolumeName, VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}}},
					},
					InitContainers: []corev1.Container{
						d.sidecarContainer(initSidecarFetchName, "fetch", flowID, task),
					},
					Containers: []corev1.Container{
						{
							Name:    mainContainerName,
							Image:   task.Image,
							Command: wrapMainCommand(),
							Args:    task.Cmd,
							Env:     mainEnv,
							VolumeMounts: []corev1.VolumeMount{
								{Name: sharedVolumeName, MountPath: sharedVolumeMount},
							},
						},
						d.sidecarContainer(initSidecarPushName, "push", flowID, task),
					},
				},
			},
		},
	}

	if _, err := d.client.BatchV1().Jobs(d.namespace).Create(ctx, job, metav1.CreateOptions{}); err != nil {
		if apierrors.IsAlreadyExists(err) {
			return nil
		}
		return fmt.Errorf("create job %s: %w", name, err)
	}
	return nil
}

// wrapMainCommand wraps the task's own command so its exit code lands on
// the shared volume for the push side-car to observe: "$@" re-expands the
// positional args supplied via the container's Args (task.Cmd), and the
// leading "flowmium-task" placeholder fills the $0 slot sh -c expects.
func wrapMainCommand() []string {
	return []string{
		"/bin/sh", "-c",
		`"$@"; code=$?; echo "$code" > ` + mainExitCodeFile + `; exit "$code"`,
		"flowmium-task",
	}
}

func (d *Driver) sidecarContainer(name, subcommand string, flowID uint64, task types.TaskDefinition) corev1.Container {
	inputsJSON, _ := marshalInputs(task.Inputs)
	outputsJSON, _ := marshalOutputs(task.Outputs)
	return corev1.Container{
		Name:    name,
		Image:   d.initContainerImage,
		Command: []string{"flowmium-init", subcommand},
		Env: []corev1.EnvVar{
			{Name: "FLOWMIUM_FLOW_ID", Value: fmt.Sprintf("%d", flowID)},
			{Name: "FLOWMIUM_INPUTS", Value: inputsJSON},
			{Name: "FLOWMIUM_OUTPUTS", Value: outputsJSON},
			{Name: "STORE_URL", Value: d.storeURL},
		},
		VolumeMounts: []corev1.VolumeMount{
			{Name: sharedVolumeName, MountPath: sharedVolumeMount},
		},
	}
}

// Outcome classifies the task's pod phase. Ambiguous phases, missing pods,
// and transient API errors all map to Unknown — never to a terminal
// classification (spec.md §4.3).
func (d *Driver) Outcome(ctx context.Context, flowID uint64, taskIndex int) (clusterdriver.Outcome, error) {
	name := clusterdriver.JobName(flowID, taskIndex)
	pods, err := d.client.CoreV1().Pods(d.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("flowmium.io/flow-id=%d,flowmium.io/task-index=%d", flowID, taskIndex),
	})
	if err != nil {
		d.log.Warn("pod-watch failed; reporting unknown", "job", name, "error", err)
		return clusterdriver.OutcomeUnknown, nil
	}
	if len(pods.Items) == 0 {
		return clusterdriver.OutcomeUnknown, nil
	}

	pod := pods.Items[0]
	switch pod.Status.Phase {
	case corev1.PodSucceeded:
		return clusterdriver.OutcomeSucceeded, nil
	case corev1.PodFailed:
		return clusterdriver.OutcomeFailed, nil
	default:
		return clusterdriver.OutcomeUnknown, nil
	}
}

func ptrInt32(v int32) *int32 { return &v }
