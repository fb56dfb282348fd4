package cluster

import (
	"context"
	"errors"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/kubectl/pkg/describe"
	"sigs.k8s.io/yaml"
)

var describeGroupKinds = map[Kind]schema.GroupKind{
	KindNamespace: {Kind: "Namespace"},
	KindNode:      {Kind: "Node"},
	KindPod:       {Kind: "Pod"},
}

// Describe renders a kubectl-style description. Containers describe their
// enclosing pod; the pod description already includes per-container detail.
func (c *Connection) Describe(kind Kind, namespace, name string) (string, error) {
	if c.restConfig == nil {
		return "", errors.New("describe requires a live cluster connection")
	}
	groupKind, ok := describeGroupKinds[kind]
	if !ok {
		return "", fmt.Errorf("cannot describe resource kind %q", kind)
	}
	describer, ok := describe.DescriberFor(groupKind, c.restConfig)
	if !ok {
		return "", fmt.Errorf("no describer for %s", groupKind.Kind)
	}
	out, err := describer.Describe(namespace, name, describe.DescriberSettings{ShowEvents: true})
	if err != nil {
		return "", wrapAPIError(err, "describe "+string(kind))
	}
	return out, nil
}

// ResourceYAML fetches the live object and renders it as YAML, with the
// server-side bookkeeping fields stripped.
func (c *Connection) ResourceYAML(ctx context.Context, kind Kind, namespace, name string) (string, error) {
	var obj interface {
		SetManagedFields([]metav1.ManagedFieldsEntry)
	}
	var err error

	switch kind {
	case KindNamespace:
		ns, getErr := c.clientset.CoreV1().Namespaces().Get(ctx, name, metav1.GetOptions{})
		if getErr == nil {
			ns.TypeMeta = metav1.TypeMeta{APIVersion: "v1", Kind: "Namespace"}
		}
		obj, err = ns, getErr
	case KindNode:
		node, getErr := c.clientset.CoreV1().Nodes().Get(ctx, name, metav1.GetOptions{})
		if getErr == nil {
			node.TypeMeta = metav1.TypeMeta{APIVersion: "v1", Kind: "Node"}
		}
		obj, err = node, getErr
	case KindPod:
		pod, getErr := c.clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
		if getErr == nil {
			pod.TypeMeta = metav1.TypeMeta{APIVersion: "v1", Kind: "Pod"}
		}
		obj, err = pod, getErr
	default:
		return "", fmt.Errorf("cannot render YAML for resource kind %q", kind)
	}
	if err != nil {
		return "", wrapAPIError(err, "get "+string(kind))
	}

	obj.SetManagedFields(nil)
	data, err := yaml.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", kind, err)
	}
	return string(data), nil
}
